package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/novus/engine/assets/loaders"
	"github.com/spaghettifunk/novus/engine/core"
)

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeShader
	AssetTypeShaderBinary
	AssetTypeConfig
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeShader:
		return "shader"
	case AssetTypeShaderBinary:
		return "shader_binary"
	case AssetTypeConfig:
		return "config"
	default:
		return "none"
	}
}

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrNoLoader      = errors.New("no loader registered for asset type")
	ErrClosed        = errors.New("asset manager already closed")
)

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

// Change is published when a watched asset is created, written or removed.
type Change struct {
	Path string
	Type AssetType
	Op   fsnotify.Op
}

// changeBuffer bounds how many notifications can queue up before new ones
// are dropped.
const changeBuffer = 64

type AssetManager struct {
	logger  *core.Logger
	root    string
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan Change
}

func NewAssetManager(logger *core.Logger) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		logger:   core.OrNop(logger).With("component", "assets"),
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		changes:  make(chan Change, changeBuffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	am.registerLoader(AssetTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(AssetTypeShaderBinary, &loaders.BinaryLoader{})

	go am.start()
	return am, nil
}

// Initialize indexes every asset under assetsDir. With watch set, the
// directory tree is also watched for changes.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	abs, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = abs

	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			am.logger.Warn("asset directory does not exist", "dir", abs)
			return nil
		}
		return err
	}
	if err := am.watchRecursive(abs, watch); err != nil {
		return err
	}
	am.logger.Debug("assets indexed", "dir", abs, "count", am.Count())
	return nil
}

// WatchFile adds a single file outside the asset tree, such as the config
// file, to the watch list.
func (am *AssetManager) WatchFile(path string) error {
	if am.isClosed {
		return ErrClosed
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	am.handleFileEvent(abs)
	// Watch the directory; editors replace files rather than write them.
	return am.fsnotify.Add(filepath.Dir(abs))
}

// Changes delivers asset change notifications. Notifications are dropped
// when the receiver falls behind.
func (am *AssetManager) Changes() <-chan Change {
	return am.changes
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadShader returns the bytes of shaders/<filename> under the asset root.
func (am *AssetManager) LoadShader(filename string) ([]byte, error) {
	res, err := am.LoadAsset(filepath.Join("shaders", filename))
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// LoadAsset loads an asset by its path relative to the asset root.
func (am *AssetManager) LoadAsset(name string) (*loaders.Resource, error) {
	path := filepath.Join(am.root, name)

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("%w: %s", ErrNoLoader, asset.Type)
	}

	res, err := loader.Load(path)
	if err != nil {
		am.logger.Error("failed to load asset", "path", path, "err", err)
		return nil, err
	}
	return res, nil
}

func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, true); err != nil {
						am.logger.Warn("failed to watch new directory", "dir", e.Name, "err", err)
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}
			if t := determineAssetType(e.Name); t != AssetTypeNone {
				am.publish(Change{Path: e.Name, Type: t, Op: e.Op})
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			am.logger.Error("watcher error", "err", err)

		case <-am.done:
			am.fsnotify.Close()
			close(am.changes)
			return
		}
	}
}

func (am *AssetManager) publish(c Change) {
	select {
	case am.changes <- c:
	default:
		am.logger.Warn("dropping asset change, receiver is behind", "path", c.Path)
	}
}

// watchRecursive indexes every file below path and, when watch is set, adds
// each directory to the watch list.
func (am *AssetManager) watchRecursive(path string, watch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if watch {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".hlsl", ".glsl", ".vert", ".frag", ".cso":
		return AssetTypeShader
	case ".spv":
		return AssetTypeShaderBinary
	case ".toml":
		return AssetTypeConfig
	default:
		return AssetTypeNone
	}
}
