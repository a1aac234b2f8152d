// Package fileid derives stable identifiers for indexed files and imported rules,
// so re-indexing or re-importing the same source updates instead of duplicating.
package fileid

import (
	"path/filepath"

	"github.com/google/uuid"
)

const docPrefix = "doc-"

// namespace scopes name-based UUIDs to this application.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/nexus"))

// FileDocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID.
func FileDocID(absolutePath string) string {
	return docPrefix + uuid.NewSHA1(namespace, []byte(filepath.Clean(absolutePath))).String()
}

// RuleID returns a stable id for a rule imported from source without an
// explicit id. The title and content identify the row within the source.
func RuleID(source, title, content string) string {
	return uuid.NewSHA1(namespace, []byte(filepath.Clean(source)+"\x00"+title+"\x00"+content)).String()
}

// NewRuleID returns a random id for a rule created through the API.
func NewRuleID() string {
	return uuid.NewString()
}
