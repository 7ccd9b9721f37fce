// Package recipes is the built-in catalog of native library build recipes.
//
// Recipes are plain declarative task definitions consumed by the engine; the
// engine never imports this package. Every recipe works exclusively through
// the build context capabilities (exec, cd, env, dynamic requires), so the
// catalog can grow without touching the orchestrator.
package recipes

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/registry"
)

// Register adds the built-in recipe catalog to the registry.
func Register(reg *registry.Registry) error {
	recipes := []model.Task{
		autotoolsRecipe(source{
			name:    "zlib",
			version: "1.3.1",
			url:     "https://zlib.net/zlib-1.3.1.tar.gz",
		}),
		autotoolsRecipe(source{
			name:    "openssl",
			version: "3.2.1",
			url:     "https://www.openssl.org/source/openssl-3.2.1.tar.gz",
			deps:    []string{"zlib"},
			configureArgs: []string{
				"no-shared", "no-tests", "zlib",
			},
			configureScript: "./config",
		}),
		autotoolsRecipe(source{
			name:    "libsodium",
			version: "1.0.19",
			url:     "https://download.libsodium.org/libsodium/releases/libsodium-1.0.19.tar.gz",
			configureArgs: []string{
				"--disable-shared", "--enable-static",
			},
		}),
		autotoolsRecipe(source{
			name:    "libevent",
			version: "2.1.12",
			url:     "https://github.com/libevent/libevent/releases/download/release-2.1.12-stable/libevent-2.1.12-stable.tar.gz",
			dirName: "libevent-2.1.12-stable",
			deps:    []string{"openssl"},
			configureArgs: []string{
				"--disable-shared", "--disable-samples",
			},
		}),
		autotoolsRecipe(source{
			name:    "unbound",
			version: "1.19.1",
			url:     "https://nlnetlabs.nl/downloads/unbound/unbound-1.19.1.tar.gz",
			deps:    []string{"openssl", "libevent"},
			configureArgs: []string{
				"--disable-shared", "--with-libevent",
			},
		}),
		walletCoreRecipe(),
		{
			// Conventional root task built when no argument is given.
			Name:         "default",
			Dependencies: []string{"wallet-core"},
			Run: func(ctx context.Context, bc model.BuildContext) error {
				bc.Logf("all libraries up to date")
				return nil
			},
		},
	}

	for _, r := range recipes {
		if err := reg.Register(r); err != nil {
			return fmt.Errorf("could not register recipe: %w", err)
		}
	}

	return nil
}

// source describes a tarball-distributed autotools-style library.
type source struct {
	name    string
	version string
	url     string
	// dirName is the directory the tarball extracts to, when it differs from
	// name-version.
	dirName         string
	deps            []string
	configureScript string
	configureArgs   []string
}

// autotoolsRecipe builds a download/extract/configure/make/install task for a
// tarball source. The cache tag is the library version, so bumping a version
// forces the library and all its dependents to rebuild.
func autotoolsRecipe(src source) model.Task {
	return model.Task{
		Name:         src.name,
		CacheTag:     src.version,
		Dependencies: src.deps,
		Run: func(ctx context.Context, bc model.BuildContext) error {
			prefix := installPrefix(bc)
			srcDir := src.dirName
			if srcDir == "" {
				srcDir = fmt.Sprintf("%s-%s", src.name, src.version)
			}
			tarball := filepath.Base(src.url)

			bc.Cd(bc.BasePath())
			if _, err := bc.Exec(ctx, model.ExecRequest{
				Command: "curl",
				Args:    []string{"-fsSL", "-o", tarball, src.url},
			}); err != nil {
				return fmt.Errorf("download: %w", err)
			}
			if _, err := bc.Exec(ctx, model.ExecRequest{
				Command: "tar",
				Args:    []string{"-xf", tarball},
			}); err != nil {
				return fmt.Errorf("extract: %w", err)
			}

			bc.Cd(srcDir)
			bc.Setenv("PKG_CONFIG_PATH", filepath.Join(prefix, "lib", "pkgconfig"))
			bc.Setenv("CPPFLAGS", "-I"+filepath.Join(prefix, "include"))
			bc.Setenv("LDFLAGS", "-L"+filepath.Join(prefix, "lib"))

			script := src.configureScript
			if script == "" {
				script = "./configure"
			}
			args := append([]string{"--prefix=" + prefix}, src.configureArgs...)
			if _, err := bc.Exec(ctx, model.ExecRequest{Command: script, Args: args}); err != nil {
				return fmt.Errorf("configure: %w", err)
			}
			if _, err := bc.Exec(ctx, model.ExecRequest{
				Command: "make",
				Args:    []string{"-j", fmt.Sprint(runtime.NumCPU())},
			}); err != nil {
				return fmt.Errorf("compile: %w", err)
			}
			if _, err := bc.Exec(ctx, model.ExecRequest{
				Command: "make",
				Args:    []string{"install"},
			}); err != nil {
				return fmt.Errorf("install: %w", err)
			}

			return nil
		},
	}
}

// walletCoreRecipe builds the wallet library against the previously installed
// dependencies. The compression and DNS libraries are requested dynamically
// so they only build when this recipe actually runs.
func walletCoreRecipe() model.Task {
	const version = "0.18.3"

	return model.Task{
		Name:         "wallet-core",
		CacheTag:     version,
		Dependencies: []string{"openssl", "libsodium"},
		Run: func(ctx context.Context, bc model.BuildContext) error {
			// Discovered while running rather than declared up front: these
			// exercise the same memoization and cycle checks as declared
			// dependencies.
			for _, dep := range []string{"zlib", "unbound"} {
				if err := bc.Requires(ctx, dep); err != nil {
					return err
				}
			}

			prefix := installPrefix(bc)
			srcDir := filepath.Join(bc.BasePath(), "wallet-core")

			bc.Cd(bc.BasePath())
			if _, err := bc.Exec(ctx, model.ExecRequest{
				Command: "git",
				Args: []string{
					"clone", "--depth", "1", "--branch", "v" + version,
					"https://github.com/mymonero/mymonero-core-cpp.git", srcDir,
				},
			}); err != nil {
				return fmt.Errorf("clone: %w", err)
			}

			bc.Cd(srcDir)
			bc.Setenv("OPENSSL_ROOT_DIR", prefix)
			if _, err := bc.Exec(ctx, model.ExecRequest{
				Command: "cmake",
				Args: []string{
					"-B", "build",
					"-DCMAKE_BUILD_TYPE=Release",
					"-DCMAKE_INSTALL_PREFIX=" + prefix,
					"-DCMAKE_PREFIX_PATH=" + prefix,
				},
			}); err != nil {
				return fmt.Errorf("configure: %w", err)
			}
			if _, err := bc.Exec(ctx, model.ExecRequest{
				Command: "cmake",
				Args:    []string{"--build", "build", "--parallel", fmt.Sprint(runtime.NumCPU())},
			}); err != nil {
				return fmt.Errorf("compile: %w", err)
			}
			if _, err := bc.Exec(ctx, model.ExecRequest{
				Command: "cmake",
				Args:    []string{"--install", "build"},
			}); err != nil {
				return fmt.Errorf("install: %w", err)
			}

			return nil
		},
	}
}

func installPrefix(bc model.BuildContext) string {
	return filepath.Join(bc.BasePath(), "prefix")
}
