package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// Operator is the account that invoked the CLI through sudo.
type Operator struct {
	Name string
	Home string
	UID  int
	GID  int
}

// StateDir is the operator's ~/.localcloud.
func (o Operator) StateDir() string { return filepath.Join(o.Home, ".localcloud") }

// SudoOperator returns the invoking account when this process runs as root
// under sudo. State then lives in that account's home, not root's.
func SudoOperator() (Operator, bool) {
	return sudoOperator(os.Geteuid(), os.Getenv, user.Lookup)
}

func sudoOperator(euid int, getenv func(string) string, lookup func(string) (*user.User, error)) (Operator, bool) {
	if euid != 0 {
		return Operator{}, false
	}
	name := getenv("SUDO_USER")
	if name == "" || name == "root" {
		return Operator{}, false
	}
	uid, err := strconv.Atoi(getenv("SUDO_UID"))
	if err != nil {
		return Operator{}, false
	}
	gid, err := strconv.Atoi(getenv("SUDO_GID"))
	if err != nil {
		return Operator{}, false
	}
	u, err := lookup(name)
	if err != nil || u.HomeDir == "" {
		return Operator{}, false
	}
	return Operator{Name: name, Home: u.HomeDir, UID: uid, GID: gid}, true
}

// HandOver gives op ownership of everything under its state directory.
// A missing directory is not an error.
func HandOver(op Operator) error {
	return chownTree(op.StateDir(), op.UID, op.GID)
}

func chownTree(root string, uid, gid int) error {
	err := filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := os.Lchown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
