package main

import (
	"github.com/corray333/mall/internal/config"
	"github.com/corray333/mall/internal/order/app"
)

func main() {
	config.MustInit("order-svc")
	app.MustNewApp().Run()
}
