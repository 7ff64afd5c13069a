// Package config loads the dataset builder configuration.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. DefaultConfig
//  2. a YAML file (--config, or .imgdataset.yaml, imgdataset.yaml,
//     ~/.config/imgdataset/config.yaml)
//  3. .env files loaded with godotenv
//  4. IMGDATASET_* environment variables
//  5. command line flags passed to Load as a map
//
// When no categories are configured anywhere, the built-in category set is
// used.
//
//	cfg, err := config.Load("", map[string]interface{}{
//	    "root":     "data",
//	    "max-num":  100,
//	    "offset":   "auto",
//	    "category": []string{"mugs=coffee mug"},
//	})
package config
