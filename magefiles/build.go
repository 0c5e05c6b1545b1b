//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Engine compiles the sample binary into bin/novus.
func (Build) Engine() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/novus", "."), withStream())
	return err
}

// Vet runs go vet over every package.
func (Build) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}
