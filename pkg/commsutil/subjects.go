package commsutil

import (
	"fmt"
	"strings"
)

// Subject prefixes.
const (
	SubjectPrefix        = "mcp"
	BackendSubjectPrefix = "backend"
)

func safeToken(s string) string {
	return strings.ReplaceAll(s, ".", "_")
}

// BuildActionSubject builds the request/reply subject a service answers actions on.
func BuildActionSubject(service string) string {
	return fmt.Sprintf("%s.%s.v1", SubjectPrefix, safeToken(service))
}

// BuildInvokedSubject builds the per-action invocation event subject.
func BuildInvokedSubject(service, action string) string {
	return fmt.Sprintf("%s.%s.invoked.%s", SubjectPrefix, safeToken(service), safeToken(action))
}

// BuildSessionSubject builds the session lifecycle event subject.
func BuildSessionSubject(service, kind string) string {
	return fmt.Sprintf("%s.%s.session.%s", SubjectPrefix, safeToken(service), kind)
}

// BuildBackendSubject builds the default subject of a remote capability provider.
func BuildBackendSubject(service string) string {
	return fmt.Sprintf("%s.%s.v1", BackendSubjectPrefix, safeToken(service))
}
