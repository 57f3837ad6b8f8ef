package main

import (
	"github.com/corray333/mall/internal/config"
	"github.com/corray333/mall/internal/payment/app"
)

func main() {
	config.MustInit("payment-svc")
	app.MustNewApp().Run()
}
