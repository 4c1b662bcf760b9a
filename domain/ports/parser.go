package ports

// ConfigParser decodes a configuration document.
type ConfigParser interface {
	// Decode unmarshals data into out. An empty document leaves out unchanged.
	Decode(data []byte, out any) error
}
