package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidatePostFields checks the title and content submitted for a post.
func ValidatePostFields(title, content string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("Title must not exceed %d characters", MaxTitleLength)
	}
	if strings.TrimSpace(content) == "" {
		return ErrContentRequired
	}
	return nil
}
