package servicedef

// DeletedPlaceholder replaces the title and content of a deleted reply.
const DeletedPlaceholder = "[[deleted]]"

type ForumPostParams struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
