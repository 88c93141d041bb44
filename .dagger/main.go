// Wembed CI/CD
//
// Package main runs the wembed tests, lints and release builds in containers
// so local runs and GitHub actions share one toolchain.
package main

import (
	"context"

	"dagger/wembed/internal/dagger"
)

const (
	tokenizersVersion  = "v1.20.2"
	onnxRuntimeVersion = "1.22.0"
)

// Wembed is the main module for the wembed CI/CD pipeline
type Wembed struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Wembed CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", "models"]
	source *dagger.Directory,
) *Wembed {
	return &Wembed{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc, the
// static tokenizers library on the linker path, CGO enabled, and the
// project source mounted.
//
// It is the shared foundation for tests, builds, and linting.
func (w *Wembed) goContainer() *dagger.Container {
	return w.cgoContainer("amd64").
		WithWorkdir("/src").
		WithDirectory("/src", w.Source)
}

// cgoContainer installs the toolchain pieces wembed links against for goarch.
func (w *Wembed) cgoContainer(goarch string) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: dagger.Platform("linux/" + goarch)}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "g++", "curl"}).
		WithExec([]string{"sh", "-c", tokenizersInstall(goarch)}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("CGO_LDFLAGS", "-L/usr/local/lib").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+goarch))
}

// Test runs the wembed unit tests via "go test"
func (w *Wembed) Test(ctx context.Context) (string, error) {
	return w.goContainer().
		WithExec([]string{"go", "test", "-tags", "tokenizers", "-v", "./..."}).
		Stdout(ctx)
}
