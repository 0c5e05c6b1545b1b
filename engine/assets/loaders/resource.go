package loaders

// Resource is a blob read from the asset directory. The renderer treats its
// Data as opaque.
type Resource struct {
	Name     string
	FullPath string
	DataSize uint64
	Data     []byte
}
