package assets

import "github.com/spaghettifunk/novus/engine/assets/loaders"

type Loader interface {
	Load(path string) (*loaders.Resource, error)
}
