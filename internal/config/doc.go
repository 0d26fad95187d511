// Package config defines configuration structures for the datagov CLI.
//
// Configuration is layered, later sources winning:
//   - Defaults (Default)
//   - YAML configuration file (LoadFromFile)
//   - .env file, loaded into the environment without overriding it (LoadDotEnv)
//   - Environment variables with the DATAGOV_ prefix (LoadFromEnv)
//   - Command-line flags (Merge)
//
// # Example
//
//	catalog_url: https://catalog.data.gov/api/3
//	download_dir: ~/datasets
//	concurrency: 8
//	progress: true
//	timeout: 10m
//	progress_bytes: 512KiB
//	retry:
//	  attempts: 3
//	  backoff: 1s
//	  multiplier: 2
//	  max_backoff: 10s
//	log:
//	  verbosity: 1
//	  format: json
//
// The configuration layer is also where the environment is read on
// behalf of the downloader: BaseDir resolves the download directory from
// the override, the home directory and the working directory.
package config
