// Package logger provides adapters for popular logger libraries to work with kvtree's Logger interface.
//
// The adapters allow you to use your existing logger with kvtree without writing boilerplate.
// Note that the standard library's slog.Logger already implements kvtree.Logger directly.
//
// Example with zap:
//
//	import (
//	    "kvtree"
//	    "kvtree/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    db, err := kvtree.Open("data.db", kvtree.WithLogger(logger.NewZap(zapLogger)))
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer db.Close()
//	}
//
package logger
