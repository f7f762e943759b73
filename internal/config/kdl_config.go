package config

import (
	"fmt"
	"log"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// parseKDL reads a .strmatch.kdl document on top of the defaults:
//
//	linking { threshold 0.85; warning 0.7; sort_by_size true }
//	matrix { workers 8; max_index 0; algorithm "ratcliff-obershelp"; progress_every 50 }
//	cache { enabled true; path ".strmatch.cache"; compression "zstd" }
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "linking":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "threshold":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Linking.Threshold = v
					}
				case "warning":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Linking.Warning = v
					}
				case "sort_by_size":
					if v, ok := firstBoolArg(cn); ok {
						cfg.Linking.SortBySize = v
					}
				}
			}
		case "matrix":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Matrix.Workers = v
					}
				case "max_index":
					if v, ok := firstIntArg(cn); ok {
						cfg.Matrix.MaxIndex = v
					}
				case "progress_every":
					if v, ok := firstIntArg(cn); ok {
						cfg.Matrix.ProgressEvery = v
					}
				case "progress_interval":
					if v, ok := firstIntArg(cn); ok {
						cfg.Matrix.ProgressIntervalMs = v
					}
				default:
					assignSimpleString(cn, "algorithm", func(v string) { cfg.Matrix.Algorithm = v })
				}
			}
		case "cache":
			// cache "path" is shorthand for cache { path "path" }
			if s, ok := firstStringArg(n); ok {
				cfg.Cache.Path = s
			}
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if v, ok := firstBoolArg(cn); ok {
						cfg.Cache.Enabled = v
					}
				default:
					assignSimpleString(cn, "path", func(v string) { cfg.Cache.Path = v })
					assignSimpleString(cn, "compression", func(v string) { cfg.Cache.Compression = v })
				}
			}
		default:
			log.Printf("WARNING: unknown section '%s' in KDL config", nodeName(n))
		}
	}

	return cfg, nil
}

// Helper functions leveraging kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		nodeName := nodeName(n)
		log.Printf("WARNING: invalid float value for '%s' in KDL config, expected number but got %T", nodeName, n.Arguments[0].Value)
		return 0, false
	}
}
func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
