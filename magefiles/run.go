//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Engine runs the sample with the window and novus.toml.
func (Run) Engine() error {
	mg.Deps(Build.Engine)
	fmt.Println("Run engine...")
	_, err := executeCmd("bin/novus", withArgs("-config", "novus.toml"), withStream())
	return err
}

// Headless renders a few hundred frames off-screen and captures some of
// them as bitmaps under captures/.
func (Run) Headless() error {
	mg.Deps(Build.Engine)
	_, err := executeCmd("bin/novus", withArgs("-config", "magefiles/headless.toml"), withStream())
	return err
}

type Test mg.Namespace

// Unit runs every test with the race detector.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}
