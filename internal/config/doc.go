// Package config loads formfile.json, the settings for the formfile server.
//
// Every field is optional. Missing values fall back to the defaults from
// New, and relative directories resolve against the directory holding the
// file.
//
// # Configuration File Structure
//
//	{
//	  "addr": ":8080",
//	  "tempDir": "/var/tmp/formfile",
//	  "destDir": "uploads",
//	  "maxFileSize": 10485760,
//	  "maxBodySize": 67108864,
//	  "blockedExtensions": [".exe", ".sh"],
//	  "sweepInterval": "15m",
//	  "metricsPath": "/metrics"
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	table, err := upload.ParseRequest(r, store, cfg.UploadConfig())
package config
