package data

// FileMode represents the type and permission bits stored with metadata rows.
// It follows the Unix file mode layout.
type FileMode uint32

const (
	ModeDir     FileMode = 1 << 31 // d: directory
	ModeSymlink FileMode = 1 << 30 // L: symbolic link

	ModePerm FileMode = 0777
)

// IsDir reports whether m describes a directory.
func (m FileMode) IsDir() bool {
	return m&ModeDir != 0
}

// IsSymlink reports whether m describes a symbolic link.
func (m FileMode) IsSymlink() bool {
	return m&ModeSymlink != 0
}

// Perm returns the Unix permission bits in m.
func (m FileMode) Perm() FileMode {
	return m & ModePerm
}

func (m FileMode) String() string {
	const rwx = "rwxrwxrwx"

	buf := make([]byte, 10)
	switch {
	case m.IsDir():
		buf[0] = 'd'
	case m.IsSymlink():
		buf[0] = 'L'
	default:
		buf[0] = '-'
	}

	for i := range 9 {
		if m&(1<<uint(8-i)) != 0 {
			buf[i+1] = rwx[i]
		} else {
			buf[i+1] = '-'
		}
	}

	return string(buf)
}
