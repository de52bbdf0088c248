package main

//go:generate swag init -g cmd/mememos/docs.go -o docs

// @title           Meme Memos API
// @version         0.1.0
// @description     Token memos, dated events and large-buy enrichment.
// @host            localhost:3000
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
