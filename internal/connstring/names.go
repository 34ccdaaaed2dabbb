package connstring

import (
	"fmt"
	"strings"
)

const (
	minNameLength = 1
	maxNameLength = 63

	// forbiddenNameChars are rejected in MongoDB database and collection names.
	forbiddenNameChars = `/\. "$`
)

// ValidateDatabaseName returns a message describing why name is not a
// valid MongoDB database name, or "" when it is valid.
func ValidateDatabaseName(name string) string {
	return validateName("Database", name)
}

// ValidateCollectionName applies the same rules to collection names.
func ValidateCollectionName(name string) string {
	return validateName("Collection", name)
}

func validateName(what, name string) string {
	if len(name) < minNameLength || len(name) > maxNameLength {
		return fmt.Sprintf("%s name must be between %d and %d characters.", what, minNameLength, maxNameLength)
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return fmt.Sprintf("%s name cannot contain these characters - `%s`", what, forbiddenNameChars)
	}
	return ""
}

const (
	maxDocDBNameLength  = 255
	forbiddenDocDBChars = `/\#?`
)

// ValidateDocDBName checks a DocumentDB-family database or container name.
// what is "Database" or "Collection".
func ValidateDocDBName(what, name string) string {
	if len(name) < minNameLength || len(name) > maxDocDBNameLength {
		return fmt.Sprintf("%s name must be between %d and %d characters.", what, minNameLength, maxDocDBNameLength)
	}
	if strings.ContainsAny(name, forbiddenDocDBChars) {
		return fmt.Sprintf("%s name cannot contain these characters - `%s`", what, forbiddenDocDBChars)
	}
	if strings.HasSuffix(name, " ") {
		return fmt.Sprintf("%s name cannot end with a space.", what)
	}
	return ""
}
