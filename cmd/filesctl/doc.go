// Package main (cmd/filesctl) is a command-line client for the marketplace file
// server.
//
//	filesctl upload ./photo.jpg --image
//	filesctl download image_1700000000123_photo.jpg -o photo.jpg
//	filesctl list --max-count 20
//	filesctl status
//	filesctl retry
package main
