package marketplace

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxCommentLength bounds a comment's text, counted in runes.
const MaxCommentLength = 2000

// PostComment appends a comment to the end of the job's thread and returns
// the new snapshot together with the created comment.
func PostComment(job *Job, author Identity, text string, now time.Time) (*Job, Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Comment{}, newError(KindInvalidInput, "comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, Comment{}, newError(KindInvalidInput, "comment text exceeds %d characters", MaxCommentLength)
	}

	c := Comment{
		ID:        uuid.NewString(),
		Author:    author.ID,
		Text:      text,
		CreatedAt: now,
	}
	next := job.Clone()
	next.Comments = append(next.Comments, c)
	return next, c, nil
}
