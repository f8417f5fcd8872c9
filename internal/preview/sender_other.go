//go:build !unix

package preview

import "net"

func setSendBuffer(conn *net.UDPConn, size int) error {
	return conn.SetWriteBuffer(size)
}
