//go:build !linux

package main

const alignedPlatform = false
