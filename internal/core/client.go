package core

import (
	"github.com/git-pkgs/requirements/client"
)

// Type aliases so index implementations only import core.
type (
	Client     = client.Client
	URLBuilder = client.URLBuilder
	BaseURLs   = client.BaseURLs
)

var (
	DefaultClient  = client.DefaultClient
	NewClient      = client.NewClient
	WithTimeout    = client.WithTimeout
	WithMaxRetries = client.WithMaxRetries
	WithAuthFunc   = client.WithAuthFunc
	BuildURLs      = client.BuildURLs
	IsNotFound     = client.IsNotFound
)
