package model

import "time"

// SourceType classifies where an evidence item came from
type SourceType string

const (
	SourcePost    SourceType = "post"    // Submission (self-post or link post)
	SourceComment SourceType = "comment" // Comment on any submission
)

// Label returns the citation label used in prompts and persona text
func (s SourceType) Label() string {
	switch s {
	case SourcePost:
		return "Post"
	case SourceComment:
		return "Comment"
	default:
		return string(s)
	}
}

// EvidenceItem is one normalized unit of public activity
type EvidenceItem struct {
	ID         string     `json:"id"`              // Reddit base36 id, unique within SourceType
	SourceType SourceType `json:"source_type"`     // post or comment
	Community  string     `json:"community"`       // Subreddit display name
	Title      string     `json:"title,omitempty"` // Posts only
	Body       string     `json:"body"`            // Length-bounded text
	Timestamp  time.Time  `json:"timestamp"`       // Creation time (UTC)
}

// EvidenceSet is the ordered, partitioned evidence for one pipeline run.
// Both partitions are newest-first.
type EvidenceSet struct {
	Posts    []EvidenceItem `json:"posts"`
	Comments []EvidenceItem `json:"comments"`
}

// Len returns the total number of items across partitions
func (s EvidenceSet) Len() int {
	return len(s.Posts) + len(s.Comments)
}

// IsEmpty reports whether the set holds no evidence at all
func (s EvidenceSet) IsEmpty() bool {
	return s.Len() == 0
}

// Partition returns the items of the given source type
func (s EvidenceSet) Partition(t SourceType) []EvidenceItem {
	switch t {
	case SourcePost:
		return s.Posts
	case SourceComment:
		return s.Comments
	default:
		return nil
	}
}

// Items returns posts followed by comments
func (s EvidenceSet) Items() []EvidenceItem {
	items := make([]EvidenceItem, 0, s.Len())
	items = append(items, s.Posts...)
	items = append(items, s.Comments...)
	return items
}

// IDs returns the ids of one partition in order
func (s EvidenceSet) IDs(t SourceType) []string {
	part := s.Partition(t)
	ids := make([]string, 0, len(part))
	for _, item := range part {
		ids = append(ids, item.ID)
	}
	return ids
}

// Contains reports whether an item with the given type and id is in the set
func (s EvidenceSet) Contains(t SourceType, id string) bool {
	for _, item := range s.Partition(t) {
		if item.ID == id {
			return true
		}
	}
	return false
}

// ContainsAny reports whether id exists in either partition.
// Models sometimes label a comment id as a post id; callers decide how strict to be.
func (s EvidenceSet) ContainsAny(id string) bool {
	return s.Contains(SourcePost, id) || s.Contains(SourceComment, id)
}
