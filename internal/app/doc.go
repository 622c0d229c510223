// Package app contains the core application logic. It loads module
// manifests, registers the compiled-in modules, bootstraps the declared
// module graph and exports what it recorded, decoupled from any specific
// entrypoint like a CLI.
package app
