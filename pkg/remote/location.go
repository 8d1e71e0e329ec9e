package remote

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Schemes understood by Dial.
const (
	SchemeHDFS   = "hdfs"
	SchemeFile   = "file"
	SchemeMemory = "mem"
	SchemeS3A    = "s3a"
)

// Location is a parsed name-node string.
type Location struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// Address returns host:port, or just host when no port is known.
func (l Location) Address() string {
	if l.Port == 0 {
		return l.Host
	}
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// ParseLocation interprets a name-node string. A non-zero port overrides
// the port embedded in nameNode.
//
//	"default"             -> hdfs, host from client configuration
//	"nn1" / "nn1:8020"    -> hdfs
//	"hdfs://nn1:8020"     -> hdfs
//	"file:///scratch"     -> file, Path "/scratch"
//	"mem://bench"         -> mem, Host "bench"
//	"s3a://bucket/prefix" -> s3a, Host "bucket", Path "prefix"
func ParseLocation(nameNode string, port int) (Location, error) {
	var loc Location

	switch {
	case nameNode == "" || nameNode == DefaultNameNode:
		loc = Location{Scheme: SchemeHDFS}

	case !strings.Contains(nameNode, "://"):
		host, p, err := splitHostPort(nameNode)
		if err != nil {
			return Location{}, err
		}
		loc = Location{Scheme: SchemeHDFS, Host: host, Port: p}

	default:
		u, err := url.Parse(nameNode)
		if err != nil {
			return Location{}, fmt.Errorf("invalid name node %q: %w", nameNode, err)
		}
		loc = Location{
			Scheme: strings.ToLower(u.Scheme),
			Host:   u.Hostname(),
			Path:   u.Path,
		}
		if ps := u.Port(); ps != "" {
			p, err := strconv.Atoi(ps)
			if err != nil {
				return Location{}, fmt.Errorf("invalid port in %q: %w", nameNode, err)
			}
			loc.Port = p
		}
		if loc.Scheme == SchemeS3A {
			loc.Path = strings.Trim(u.Path, "/")
		}
	}

	if port != 0 {
		loc.Port = port
	}
	return loc, nil
}

func splitHostPort(s string) (string, int, error) {
	if !strings.Contains(s, ":") {
		return s, 0, nil
	}
	host, ps, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, fmt.Errorf("invalid name node %q: %w", s, err)
	}
	p, err := strconv.Atoi(ps)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return host, p, nil
}

// IsWrite reports whether flag opens for writing.
func IsWrite(flag int) bool {
	return flag&(os.O_WRONLY|os.O_RDWR) != 0
}
