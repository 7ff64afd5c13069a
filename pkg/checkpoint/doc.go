// Package checkpoint provides functionality for saving and resuming category crawls.
//
// The checkpoint system allows a build to resume after interruptions
// such as network failures, rate limits, or manual stops. It tracks:
//   - The search offset of the next result page
//   - The file index of the next stored image
//   - Image URLs already stored (to avoid duplicates)
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/imgdataset/checkpoints/
//   - macOS: ~/Library/Application Support/imgdataset/checkpoints/
//   - Windows: %APPDATA%/imgdataset/checkpoints/
//
// Each file is named after the category folder plus a short hash of the
// absolute destination path, e.g. paper_cup-1a2b3c4d5e6f.checkpoint.json.
//
// The checkpoint files are saved atomically to prevent corruption and include
// versioning for future compatibility.
package checkpoint
