package installer

import (
	"fmt"
	"sort"
	"strings"
)

type InstallState struct {
	EnvVars map[string]string
}

func NewInstallState() *InstallState {
	return &InstallState{
		EnvVars: make(map[string]string),
	}
}

// EnvFile renders the collected variables as a sorted .env document.
func (s *InstallState) EnvFile() string {
	keys := make([]string, 0, len(s.EnvVars))
	for k := range s.EnvVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := s.EnvVars[k]
		if v == "" {
			continue
		}
		if strings.ContainsAny(v, " #\"'") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	return b.String()
}
