// Package docs provides Swagger API documentation
package docs

// @title Signals Service API
// @version 1.0
// @description Crypto market signals, portfolio analytics and paper trading on top of the Token Metrics data API

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:5000
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token. Issue one with cmd/issuetoken.

// @tag.name market
// @tag.description Token Metrics passthrough: tokens, signals, grades, prices, metrics and AI agent

// @tag.name signals
// @tag.description Derived buy/sell/hold advice and market overview

// @tag.name portfolio
// @tag.description Stateless analysis and optimization of a set of holdings

// @tag.name paper
// @tag.description Paper trading ledger of the authenticated owner

// @tag.name stream
// @tag.description Websocket digest stream

// @tag.name admin
// @tag.description Digest scheduler status and manual runs

// @tag.name health
// @tag.description Health check and monitoring endpoints
