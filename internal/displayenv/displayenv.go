// Package displayenv finds the X display and authority file for processes
// started outside a graphical session, such as an MCP server launched by an
// editor or a daemon under systemd.
package displayenv

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
)

var ErrNoDisplay = errors.New("no X display found")

// Env is a resolved display and its authority file.
type Env struct {
	Display    string
	XAuthority string
}

// Prober looks for a graphical session on the local machine.
type Prober struct {
	// Root is the filesystem the /proc and /tmp/.X11-unix lookups read from.
	Root fs.FS
	// Run executes a command and returns its stdout.
	Run func(name string, args ...string) ([]byte, error)
	// UID selects whose loginctl sessions count.
	UID int
}

// SystemProber probes the running system.
func SystemProber() *Prober {
	return &Prober{
		Root: os.DirFS("/"),
		Run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
		UID: os.Getuid(),
	}
}

// Resolve picks the display from, in order: DISPLAY in environ, configured,
// the caller's loginctl session, the lowest socket in /tmp/.X11-unix. The
// authority file comes from XAUTHORITY, the session leader's environment or
// ~/.Xauthority.
func (p *Prober) Resolve(configured string, environ []string) (Env, error) {
	vars := parseEnviron(environ)
	env := Env{
		Display:    strings.TrimSpace(vars["DISPLAY"]),
		XAuthority: strings.TrimSpace(vars["XAUTHORITY"]),
	}
	if env.Display == "" {
		env.Display = strings.TrimSpace(configured)
	}

	if env.Display == "" || env.XAuthority == "" {
		session := p.sessionEnv()
		if env.Display == "" {
			env.Display = session.Display
		}
		if env.XAuthority == "" {
			env.XAuthority = session.XAuthority
		}
	}
	if env.Display == "" {
		env.Display = p.socketDisplay()
	}
	if env.Display == "" {
		return Env{}, fmt.Errorf("%w; set display in config (e.g. display: \":0\") or export DISPLAY", ErrNoDisplay)
	}

	if env.XAuthority == "" {
		home := strings.TrimSpace(vars["HOME"])
		if home == "" {
			home, _ = os.UserHomeDir()
		}
		if home != "" {
			candidate := path.Join(home, ".Xauthority")
			if _, err := os.Stat(candidate); err == nil {
				env.XAuthority = candidate
			}
		}
	}
	return env, nil
}

// Resolve probes the running system.
func Resolve(configured string, environ []string) (Env, error) {
	return SystemProber().Resolve(configured, environ)
}

// Setup resolves against the process environment and exports XAUTHORITY
// when it was missing, since the X client library reads it from there. It
// returns the display identifier to open.
func Setup(configured string) (string, error) {
	env, err := Resolve(configured, os.Environ())
	if err != nil {
		return "", err
	}
	if env.XAuthority != "" && os.Getenv("XAUTHORITY") == "" {
		if err := os.Setenv("XAUTHORITY", env.XAuthority); err != nil {
			return "", err
		}
	}
	return env.Display, nil
}

// sessionEnv asks logind for the user's first session with a display. The
// session leader's environment wins over logind's Display property.
func (p *Prober) sessionEnv() Env {
	if p.Run == nil {
		return Env{}
	}
	out, err := p.Run("loginctl", "list-sessions", "--no-legend")
	if err != nil {
		return Env{}
	}
	for _, id := range userSessions(out, p.UID) {
		d := p.sessionProperty(id, "Display")
		if d == "" || strings.EqualFold(d, "n/a") {
			continue
		}
		env := Env{Display: d}
		if leader := p.sessionProperty(id, "Leader"); leader != "" && leader != "0" {
			vars := p.procEnviron(leader)
			if v := strings.TrimSpace(vars["DISPLAY"]); v != "" {
				env.Display = v
			}
			env.XAuthority = strings.TrimSpace(vars["XAUTHORITY"])
		}
		return env
	}
	return Env{}
}

func (p *Prober) sessionProperty(id, prop string) string {
	out, err := p.Run("loginctl", "show-session", id, "-p", prop, "--value")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// userSessions returns the session ids in loginctl list-sessions output that
// belong to uid.
func userSessions(out []byte, uid int) []string {
	want := strconv.Itoa(uid)
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[1] == want {
			ids = append(ids, fields[0])
		}
	}
	return ids
}

func (p *Prober) procEnviron(pid string) map[string]string {
	if p.Root == nil {
		return nil
	}
	data, err := fs.ReadFile(p.Root, path.Join("proc", pid, "environ"))
	if err != nil {
		return nil
	}
	return parseEnviron(strings.Split(string(data), "\x00"))
}

// socketDisplay returns the lowest-numbered display with a socket under
// /tmp/.X11-unix.
func (p *Prober) socketDisplay() string {
	if p.Root == nil {
		return ""
	}
	entries, err := fs.ReadDir(p.Root, "tmp/.X11-unix")
	if err != nil {
		return ""
	}
	lowest := -1
	for _, entry := range entries {
		n, ok := strings.CutPrefix(entry.Name(), "X")
		if !ok {
			continue
		}
		num, err := strconv.Atoi(n)
		if err != nil || num < 0 {
			continue
		}
		if lowest < 0 || num < lowest {
			lowest = num
		}
	}
	if lowest < 0 {
		return ""
	}
	return ":" + strconv.Itoa(lowest)
}

// parseEnviron turns KEY=VALUE entries into a map; the first entry wins.
func parseEnviron(entries []string) map[string]string {
	vars := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			continue
		}
		if _, seen := vars[k]; !seen {
			vars[k] = v
		}
	}
	return vars
}
