package filesystem

import (
	"fmt"
)

// OpenTree opens a local or SFTP tree. It returns the provider and a closer
// to call when done (a no-op for local trees). Remote LNDP handles are opened
// by the remote client instead.
func OpenTree(handle TreeHandle) (TreeProvider, func(), error) {
	switch handle.Kind {
	case KindLocal:
		tree, err := NewLocalTree(handle.LocalPath)
		if err != nil {
			return nil, nil, err
		}

		return tree, func() {}, nil

	case KindSFTP:
		conn, err := ConnectSFTP(handle.Host, handle.Port, handle.User)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s@%s: %w", handle.User, handle.Addr(), err)
		}

		tree, err := NewSFTPTree(conn, handle.Path, DefaultPoolConfig())
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}

		closer := func() {
			_ = tree.Close()
			_ = conn.Close()
		}

		return tree, closer, nil

	default:
		return nil, nil, fmt.Errorf("cannot open %s location %s directly: %w", handle.Kind, handle, ErrUnsupported)
	}
}
