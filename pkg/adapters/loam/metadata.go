package loam

// DocumentMetadata is the frontmatter of a study document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type DocumentMetadata struct {
	ID     string   `json:"id" mapstructure:"id"`
	Title  string   `json:"title" mapstructure:"title"`
	Source string   `json:"source" mapstructure:"source"`
	Tags   []string `json:"tags" mapstructure:"tags"`
}
