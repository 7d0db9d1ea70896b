package venv

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kazhuravlev/optional"
	"github.com/spf13/afero"

	"github.com/asottile/rubyvenv/internal/fsh"
)

// activateTemplate is executed by the user's shell, not by this tool.
// Roughly stolen from python virtualenv 15.0.1. DIRECTORY is replaced
// with the shell-quoted destination path.
const activateTemplate = `# This file must be used with "source bin/activate" *from bash*
# you cannot run it directly

deactivate_rubyvenv () {
    # reset old environment variables
    # ! [ -z ${VAR+_} ] returns true if VAR is declared at all
    if ! [ -z "${_OLD_RUBYVENV_PATH+_}" ] ; then
        PATH="$_OLD_RUBYVENV_PATH"
        export PATH
        unset _OLD_RUBYVENV_PATH
    fi

    if ! [ -z "${_OLD_RUBYVENV_GEM_HOME+_}" ] ; then
        GEM_HOME="$_OLD_RUBYVENV_GEM_HOME"
        export GEM_HOME
        unset _OLD_RUBYVENV_GEM_HOME
    fi

    # This should detect bash and zsh, which have a hash command that must
    # be called to get it to forget past commands.  Without forgetting
    # past commands the $PATH changes we made may not be respected
    if [ -n "${BASH-}" ] || [ -n "${ZSH_VERSION-}" ] ; then
        hash -r 2>/dev/null
    fi

    if ! [ -z "${_OLD_RUBYVENV_PS1+_}" ] ; then
        PS1="$_OLD_RUBYVENV_PS1"
        export PS1
        unset _OLD_RUBYVENV_PS1
    fi

    unset RUBYVENV
    if [ ! "${1-}" = "nondestructive" ] ; then
        # Self destruct!
        unset -f deactivate_rubyvenv
    fi
}

# unset irrelevant variables
deactivate_rubyvenv nondestructive

RUBYVENV=DIRECTORY
export RUBYVENV

_OLD_RUBYVENV_PATH="$PATH"
PATH="$RUBYVENV/bin:$PATH"
export PATH

_OLD_RUBYVENV_PS1="$PS1"
PS1="($(basename "$RUBYVENV")) $PS1"
export PS1

# This should detect bash and zsh, which have a hash command that must
# be called to get it to forget past commands.  Without forgetting
# past commands the $PATH changes we made may not be respected
if [ -n "${BASH-}" ] || [ -n "${ZSH_VERSION-}" ] ; then
    hash -r 2>/dev/null
fi
`

// gemHomeAssignments is appended for system-ruby environments: gems
// install into the environment instead of the user's gem home. The
// restore lives in deactivate_rubyvenv above.
const gemHomeAssignments = `
_OLD_RUBYVENV_GEM_HOME="${GEM_HOME-}"
GEM_HOME="$RUBYVENV/gems"
export GEM_HOME

PATH="$GEM_HOME/bin:$PATH"
export PATH
`

var shellSafeRe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// ShellQuote quotes s for safe use in a POSIX shell assignment.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}

	if shellSafeRe.MatchString(s) {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// WriteActivate renders the activation script into dest/bin/activate.
// Regeneration with the same inputs is idempotent.
func WriteActivate(fSys fsh.FS, dest string, extra optional.Val[string]) error {
	script := strings.ReplaceAll(activateTemplate, "DIRECTORY", ShellQuote(dest))
	if val, ok := extra.Get(); ok {
		script += val
	}

	path := filepath.Join(dest, "bin", "activate")
	if err := fSys.MkdirAll(filepath.Dir(path), fsh.DefaultDirPerm); err != nil {
		return err
	}

	return afero.WriteFile(fSys, path, []byte(script), 0o644)
}
