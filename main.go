package main

import (
	chathub "github.com/putto11262002/chathub/app"
)

func main() {
	app := chathub.New(nil, nil)
	app.Start()
}
