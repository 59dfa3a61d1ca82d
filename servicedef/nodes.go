package servicedef

import "strings"

const StoreRefPrefix = "workspace://SpacesStore/"

// NodeRefForID returns the node reference of a node in the default store.
func NodeRefForID(id string) string {
	return StoreRefPrefix + id
}

// IDFromNodeRef returns the last segment of a node reference.
func IDFromNodeRef(nodeRef string) string {
	return nodeRef[strings.LastIndex(nodeRef, "/")+1:]
}

// NodeRefPath turns "workspace://SpacesStore/id" into "workspace/SpacesStore/id", the form used
// inside web-script URLs.
func NodeRefPath(nodeRef string) string {
	return strings.Replace(nodeRef, "://", "/", 1)
}

// CreateNodeParams is the body of a core API request to create a child node.
type CreateNodeParams struct {
	Name     string `json:"name"`
	NodeType string `json:"nodeType"`
}

const (
	NodeTypeFolder  = "cm:folder"
	NodeTypeContent = "cm:content"

	// NodeAliasMy is the core API alias for the current user's home folder.
	NodeAliasMy = "-my-"
)
