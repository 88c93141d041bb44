package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/wembed/internal/dagger"
)

// tokenizersInstall returns the shell snippet that drops libtokenizers.a
// for goarch into /usr/local/lib.
func tokenizersInstall(goarch string) string {
	arch := "x86_64"
	if goarch == "arm64" {
		arch = "aarch64"
	}
	return fmt.Sprintf(
		"curl -fsSL https://github.com/daulet/tokenizers/releases/download/%s/libtokenizers.linux-%s.tar.gz | tar -xz -C /usr/local/lib",
		tokenizersVersion, arch,
	)
}

// onnxRuntimeInstall returns the shell snippet that unpacks the ONNX Runtime
// shared library for goarch into /out/lib.
func onnxRuntimeInstall(goarch string) string {
	arch := "x64"
	if goarch == "arm64" {
		arch = "aarch64"
	}
	return fmt.Sprintf(
		"mkdir -p /out/lib && curl -fsSL https://github.com/microsoft/onnxruntime/releases/download/v%[1]s/onnxruntime-linux-%[2]s-%[1]s.tgz | tar -xz --strip-components=2 -C /out/lib onnxruntime-linux-%[2]s-%[1]s/lib",
		onnxRuntimeVersion, arch,
	)
}

// Build and return directory of wembed binaries, each next to the ONNX
// Runtime library it loads at run time
func (w *Wembed) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// the cgo tokenizer binding has no darwin cross toolchain here
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()

	for _, goarch := range goarches {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := w.cgoContainer(goarch).
			WithDirectory("/src", w.Source).
			WithWorkdir("/src").
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", "/out/", "./cli/wembed"}).
			WithExec([]string{"sh", "-c", onnxRuntimeInstall(goarch)})

		outputs = outputs.WithDirectory(path, build.Directory("/out"))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (w *Wembed) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/wembeddings/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/wembeddings/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/wembeddings/pkg/utils.Buildtime=%s'", buildtime),
	}

	return w.Build(ctx, strings.Join(ldflags, " "))
}
