// Package listing extracts hyperlink targets from HTML directory
// listings like the ones rvm.io serves for its binary trees.
package listing

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// Hrefs returns the href attribute of every anchor tag in document
// order. Values are kept verbatim: no filtering, no deduplication.
func Hrefs(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)

	hrefs := make([]string, 0)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tokenize html: %w", err)
			}

			return hrefs, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}

			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "href" {
					hrefs = append(hrefs, string(val))
					break
				}
			}
		}
	}
}
