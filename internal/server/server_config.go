package server

import (
	"os"
	"time"

	"github.com/spf13/pflag"
)

const defaultCatalogPath = "catalog.db"

type serverConfig struct {
	listenAddr string

	catalogPath string

	healthzTimeout time.Duration
}

type serverOption func(*serverConfig) error

func withListenAddress(addr string) serverOption {
	return func(o *serverConfig) error {
		o.listenAddr = addr
		return nil
	}
}

func withCatalogPath(path string) serverOption {
	return func(conf *serverConfig) error {
		if path == "" {
			path = defaultCatalogPath
		}
		conf.catalogPath = path
		return nil
	}
}

func readServerConfigEnv() []serverOption {
	var opts []serverOption

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		opts = append(opts, withListenAddress(addr))
	}

	if path := os.Getenv("CATALOG_PATH"); path != "" {
		opts = append(opts, withCatalogPath(path))
	}

	return opts
}

func readServerConfigFlags(fset *pflag.FlagSet) []serverOption {
	var opts []serverOption

	if addr, err := fset.GetString("listen-addr"); err == nil && addr != "" {
		opts = append(opts, withListenAddress(addr))
	}

	if path, err := fset.GetString("catalog"); err == nil && path != "" {
		opts = append(opts, withCatalogPath(path))
	}

	return opts
}
