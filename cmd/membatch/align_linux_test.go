//go:build linux

package main

const alignedPlatform = true
