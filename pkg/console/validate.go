package console

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var hostnameRE = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

func validHostname(s string) error {
	if !hostnameRE.MatchString(s) {
		return errors.New("The name includes invalid characters. Try another name.")
	}
	return nil
}

func validDomain(s string) error {
	if s == "" || len(s) > 253 {
		return errors.New("Enter a domain such as project.domain.com.")
	}
	for _, label := range strings.Split(s, ".") {
		if !hostnameRE.MatchString(label) {
			return errors.New("Enter a domain such as project.domain.com.")
		}
	}
	return nil
}

func validPort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("The port must be a number between 1 and 65535.")
	}
	return nil
}

func validGitURL(s string) error {
	for _, prefix := range []string{"https://", "git@"} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			return nil
		}
	}
	return errors.New("Use https:// for public repositories and git@ for private repositories.")
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(what + " cannot be empty.")
		}
		return nil
	}
}
