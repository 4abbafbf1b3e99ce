package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pulse_exec/internal/app"
	"pulse_exec/internal/domain"
	"pulse_exec/internal/engine"
	"pulse_exec/internal/infra"
)

func usage() {
	fmt.Println(`PulseExec - Order Management CLI

USAGE:
  pulse-exec <command> [options]

COMMANDS:
  place-order     Place a new order
    --symbol <SYM>    Instrument (e.g., BTC-PERPETUAL)
    --side <SIDE>     BUY or SELL
    --price <PRICE>   Limit price
    --amount <AMT>    Order amount
    --type <TYPE>     LIMIT or MARKET (default: LIMIT)
    --client-id <ID>  Optional client order id

  cancel-order    Cancel an existing order
    --order-id <ID>   Client order id

  modify-order    Modify a resting order
    --order-id <ID>   Client order id
    --price <PRICE>   New price
    --amount <AMT>    New amount

  list-orders     List orders
    --active          Show only active orders
    --symbol <SYM>    Filter by instrument

  get-order       Show one order
    --order-id <ID>   Client order id

  get-orderbook   Fetch a depth snapshot
    --symbol <SYM>    Instrument

  demo            Run a scripted lifecycle against the paper venue

ENVIRONMENT:
  DERIBIT_KEY       API key (required for LIVE mode)
  DERIBIT_SECRET    API secret (required for LIVE mode)
  DERIBIT_REST_URL  REST API URL (default: https://test.deribit.com)
  DB_PATH           Database path (default: ./pulseexec.db)`)
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		usage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	infra.PrintBanner(bootstrap.Config)

	if err := bootstrap.StartOrderFeed(ctx); err != nil {
		slog.Error("❌ Order feed failed", slog.Any("error", err))
		bootstrap.Shutdown()
		os.Exit(1)
	}

	if err := runCommand(ctx, bootstrap, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		bootstrap.Shutdown()
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, b *app.Bootstrap, command string, args []string) error {
	switch command {
	case "place-order":
		return cmdPlaceOrder(ctx, b, args)
	case "cancel-order":
		return cmdCancelOrder(ctx, b, args)
	case "modify-order":
		return cmdModifyOrder(ctx, b, args)
	case "list-orders":
		return cmdListOrders(b, args)
	case "get-order":
		return cmdGetOrder(b, args)
	case "get-orderbook":
		return cmdGetOrderBook(ctx, b, args)
	case "demo":
		return cmdDemo(ctx, b)
	default:
		usage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// cmdPlaceOrder registers the order locally, submits it to the venue,
// and applies the result: OPEN with the exchange id on success, REJECTED
// with the venue's message on failure.
func cmdPlaceOrder(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("place-order", flag.ExitOnError)
	symbol := fs.String("symbol", "", "instrument name")
	sideStr := fs.String("side", "", "BUY or SELL")
	price := fs.Float64("price", 0, "limit price")
	amount := fs.Float64("amount", 0, "order amount")
	typeStr := fs.String("type", "LIMIT", "LIMIT or MARKET")
	clientID := fs.String("client-id", "", "optional client order id")
	fs.Parse(args)

	if *symbol == "" || *sideStr == "" || *amount <= 0 {
		return fmt.Errorf("missing required arguments: --symbol, --side, --amount")
	}

	side, err := domain.ParseSide(*sideStr)
	if err != nil {
		return err
	}
	orderType, err := domain.ParseOrderType(*typeStr)
	if err != nil {
		return err
	}

	req := domain.OrderRequest{
		Symbol:        *symbol,
		Side:          side,
		Price:         *price,
		Amount:        *amount,
		Type:          orderType,
		ClientOrderID: *clientID,
	}

	orderID := b.Registry.CreateOrder(req)
	if orderID == "" {
		return fmt.Errorf("order not created (duplicate client order id?)")
	}
	req.ClientOrderID = orderID
	fmt.Printf("✅ Order created locally: %s\n", orderID)
	fmt.Println("📡 Submitting to exchange...")

	result := b.Gateway.PlaceOrder(ctx, req)
	if result.Success {
		fmt.Printf("✅ Order placed: exchange id %s\n", result.ExchangeOrderID)
		b.Registry.UpdateOrder(orderID, domain.StateOpen, engine.UpdateOptions{
			ExchangeOrderID: result.ExchangeOrderID,
		})
	} else {
		fmt.Printf("❌ Order rejected: %s\n", result.ErrorMessage)
		b.Registry.UpdateOrder(orderID, domain.StateRejected, engine.UpdateOptions{
			ErrorMessage: result.ErrorMessage,
		})
	}

	if order, ok := b.Registry.GetOrder(orderID); ok {
		printOrder(order)
	}
	return nil
}

func cmdCancelOrder(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("cancel-order", flag.ExitOnError)
	orderID := fs.String("order-id", "", "client order id")
	fs.Parse(args)

	if *orderID == "" {
		return fmt.Errorf("missing required argument: --order-id")
	}

	order, ok := b.Registry.GetOrder(*orderID)
	if !ok {
		return fmt.Errorf("order not found: %s", *orderID)
	}

	if order.ExchangeOrderID == "" {
		fmt.Println("⚠️  Order not yet on exchange, canceling locally")
		b.Registry.UpdateOrder(*orderID, domain.StateCanceled, engine.UpdateOptions{})
		fmt.Println("✅ Order canceled locally")
		return nil
	}

	if !b.Registry.MarkForCancel(*orderID) {
		return fmt.Errorf("order is not cancelable: %s (state %s)", *orderID, order.State)
	}

	fmt.Println("📡 Canceling on exchange...")
	result := b.Gateway.CancelOrder(ctx, order.ExchangeOrderID)
	if !result.Success {
		return fmt.Errorf("cancel failed: %s", result.ErrorMessage)
	}

	b.Registry.UpdateOrder(*orderID, domain.StateCanceled, engine.UpdateOptions{})
	fmt.Println("✅ Order canceled")
	return nil
}

func cmdModifyOrder(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("modify-order", flag.ExitOnError)
	orderID := fs.String("order-id", "", "client order id")
	price := fs.Float64("price", 0, "new price")
	amount := fs.Float64("amount", 0, "new amount")
	fs.Parse(args)

	if *orderID == "" || (*price == 0 && *amount == 0) {
		return fmt.Errorf("missing required arguments: --order-id plus --price or --amount")
	}

	order, ok := b.Registry.GetOrder(*orderID)
	if !ok {
		return fmt.Errorf("order not found: %s", *orderID)
	}
	if order.ExchangeOrderID == "" {
		return fmt.Errorf("order not yet on exchange, cannot modify")
	}

	newPrice := order.Request.Price
	if *price != 0 {
		newPrice = *price
	}
	newAmount := order.Request.Amount
	if *amount != 0 {
		newAmount = *amount
	}

	fmt.Println("📡 Modifying on exchange...")
	result := b.Gateway.ModifyOrder(ctx, order.ExchangeOrderID, newPrice, newAmount)
	if !result.Success {
		return fmt.Errorf("modify failed: %s", result.ErrorMessage)
	}

	fmt.Println("✅ Order modified")
	return nil
}

func cmdListOrders(b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("list-orders", flag.ExitOnError)
	activeOnly := fs.Bool("active", false, "show only active orders")
	symbol := fs.String("symbol", "", "filter by instrument")
	fs.Parse(args)

	var orders []domain.Order
	if *activeOnly {
		orders = b.Registry.ActiveOrders()
	} else {
		orders = b.Registry.AllOrders()
	}

	if *symbol != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Request.Symbol == *symbol {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	label := "All"
	if *activeOnly {
		label = "Active"
	}
	fmt.Printf("\n📋 %s Orders - Total: %d\n\n", label, len(orders))

	if len(orders) == 0 {
		fmt.Println("No orders found.")
		return nil
	}
	for _, o := range orders {
		fmt.Printf("• %s | %s | %s | %.2f x %.4f | %s\n",
			o.ClientOrderID, o.Request.Symbol, o.Request.Side,
			o.Request.Price, o.Request.Amount, o.State)
	}
	return nil
}

func cmdGetOrder(b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("get-order", flag.ExitOnError)
	orderID := fs.String("order-id", "", "client order id")
	fs.Parse(args)

	if *orderID == "" {
		return fmt.Errorf("missing required argument: --order-id")
	}

	order, ok := b.Registry.GetOrder(*orderID)
	if !ok {
		return fmt.Errorf("order not found: %s", *orderID)
	}
	printOrder(order)
	return nil
}

func cmdGetOrderBook(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("get-orderbook", flag.ExitOnError)
	symbol := fs.String("symbol", "", "instrument name")
	fs.Parse(args)

	if *symbol == "" {
		return fmt.Errorf("missing required argument: --symbol")
	}

	fmt.Printf("📡 Fetching orderbook for %s...\n", *symbol)
	book, err := b.Gateway.GetOrderBook(ctx, *symbol)
	if err != nil {
		return err
	}
	printOrderBook(book)
	return nil
}

// cmdDemo walks one order through the full lifecycle on the configured
// venue: create, submit, partial fill, full fill, plus a second order
// that gets canceled.
func cmdDemo(ctx context.Context, b *app.Bootstrap) error {
	fmt.Println("=== PulseExec demo: order lifecycle ===")

	b.Registry.RegisterUpdateCallback(func(o domain.Order) {
		fmt.Printf("  [event] %s -> %s (filled %.4f)\n", o.ClientOrderID, o.State, o.FilledAmount)
	})

	req := domain.OrderRequest{
		Symbol: "BTC-PERPETUAL",
		Side:   domain.SideBuy,
		Price:  50000,
		Amount: 10,
		Type:   domain.TypeLimit,
	}
	orderID := b.Registry.CreateOrder(req)
	if orderID == "" {
		return fmt.Errorf("demo order not created")
	}
	req.ClientOrderID = orderID

	result := b.Gateway.PlaceOrder(ctx, req)
	if !result.Success {
		return fmt.Errorf("demo place failed: %s", result.ErrorMessage)
	}
	b.Registry.UpdateOrder(orderID, domain.StateOpen, engine.UpdateOptions{
		ExchangeOrderID: result.ExchangeOrderID,
	})
	b.Registry.UpdateOrder(orderID, domain.StatePartial, engine.UpdateOptions{FilledAmount: 4})
	b.Registry.UpdateOrder(orderID, domain.StateFilled, engine.UpdateOptions{FilledAmount: 10})

	cancelReq := domain.OrderRequest{
		Symbol: "ETH-PERPETUAL",
		Side:   domain.SideSell,
		Price:  3000,
		Amount: 5,
		Type:   domain.TypeLimit,
	}
	cancelID := b.Registry.CreateOrder(cancelReq)
	cancelReq.ClientOrderID = cancelID
	cancelResult := b.Gateway.PlaceOrder(ctx, cancelReq)
	if cancelResult.Success {
		b.Registry.UpdateOrder(cancelID, domain.StateOpen, engine.UpdateOptions{
			ExchangeOrderID: cancelResult.ExchangeOrderID,
		})
		if b.Registry.MarkForCancel(cancelID) {
			b.Gateway.CancelOrder(ctx, cancelResult.ExchangeOrderID)
			b.Registry.UpdateOrder(cancelID, domain.StateCanceled, engine.UpdateOptions{})
		}
	}

	fmt.Printf("\nFinal state (%d orders):\n", len(b.Registry.AllOrders()))
	for _, o := range b.Registry.AllOrders() {
		printOrder(o)
	}
	return nil
}

func printOrder(o domain.Order) {
	fmt.Println("┌────────────────────────────────────────────┐")
	fmt.Printf("│ Client Order ID: %-26s│\n", o.ClientOrderID)
	if o.ExchangeOrderID != "" {
		fmt.Printf("│ Exchange ID: %-30s│\n", o.ExchangeOrderID)
	}
	fmt.Printf("│ Symbol: %-35s│\n", o.Request.Symbol)
	fmt.Printf("│ Side: %-37s│\n", o.Request.Side)
	fmt.Printf("│ Type: %-37s│\n", o.Request.Type)
	fmt.Printf("│ Price: %-36.2f│\n", o.Request.Price)
	fmt.Printf("│ Amount: %-35.4f│\n", o.Request.Amount)
	fmt.Printf("│ Filled: %-35.4f│\n", o.FilledAmount)
	fmt.Printf("│ State: %-36s│\n", o.State)
	if o.ErrorMessage != "" {
		msg := o.ErrorMessage
		if len(msg) > 35 {
			msg = msg[:35]
		}
		fmt.Printf("│ Error: %-36s│\n", msg)
	}
	fmt.Println("└────────────────────────────────────────────┘")
}

func printOrderBook(book domain.OrderBook) {
	fmt.Printf("\nOrderBook: %s\n\n", book.Symbol)

	fmt.Println("ASKS (best last)")
	for i := len(book.Asks) - 1; i >= 0; i-- {
		fmt.Printf("  %14s  %14s\n", book.Asks[i].Price.StringFixed(2), book.Asks[i].Amount.String())
	}
	fmt.Printf("  ── spread %s | mid %s ──\n", book.Spread().StringFixed(2), book.MidPrice().StringFixed(2))
	fmt.Println("BIDS (best first)")
	for _, bid := range book.Bids {
		fmt.Printf("  %14s  %14s\n", bid.Price.StringFixed(2), bid.Amount.String())
	}
	fmt.Println()
}
