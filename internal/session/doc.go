// Package session lays out a recording session on disk.
//
// A session root holds one directory per sensor:
//
//	<root>/<sensor>/images/image{i}.jpg
//	<root>/<sensor>/timestamps.txt
//	<root>/<sensor>/raw/frame{i}.txt[.zst]   (sensors with raw sidecars)
//
// timestamps.txt carries one "image{i} {unix_ms}" row per persisted frame in
// persistence order and is the only key correlating image files back to
// capture time.
package session
