package integration_test

import (
	"context"
	"testing"

	"github.com/cucumber/godog"

	"github.com/nimbusdex/matcher/integration/steps"
)

// TestFeatures runs the gherkin scenarios under features/ against
// matching.Book directly, exercising the testable properties in-process
// rather than over the network.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "matching",
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func initializeScenario(sc *godog.ScenarioContext) {
	var mc *steps.MatchingContext

	sc.Before(func(ctx context.Context, scenario *godog.Scenario) (context.Context, error) {
		mc = steps.NewMatchingContext()
		return ctx, nil
	})

	sc.Step(`^an empty order book for "([^"]*)" with aggregation disabled$`, func(pair string) error {
		return mc.EmptyBookWithAggregationDisabled(pair)
	})
	sc.Step(`^an empty order book for "([^"]*)" with tick size (\d+)$`, func(pair string, ticks int64) error {
		return mc.EmptyBookWithTickSize(pair, uint64(ticks))
	})
	sc.Step(`^order "([^"]*)" (buys|sells) (\d+) at price (\d+) with fee (\d+)$`, func(ref, side string, amount, price, fee int64) error {
		return mc.PlacesOrder(ref, side, uint64(amount), uint64(price), uint64(fee))
	})
	sc.Step(`^order "([^"]*)" is cancelled$`, func(ref string) error {
		return mc.OrderIsCancelled(ref)
	})
	sc.Step(`^order "([^"]*)" is fully filled for (\d+) at price (\d+)$`, func(ref string, amount, price int64) error {
		return mc.OrderIsFullyFilledAtPrice(ref, uint64(amount), uint64(price))
	})
	sc.Step(`^order "([^"]*)" is fully filled for (\d+)$`, func(ref string, amount int64) error {
		return mc.OrderIsFullyFilled(ref, uint64(amount))
	})
	sc.Step(`^order "([^"]*)" is partially filled for (\d+) with fee charged (\d+)$`, func(ref string, amount, fee int64) error {
		return mc.OrderIsPartiallyFilledWithFeeCharged(ref, uint64(amount), uint64(fee))
	})
	sc.Step(`^order "([^"]*)" is partially filled for (\d+)$`, func(ref string, amount int64) error {
		return mc.OrderIsPartiallyFilled(ref, uint64(amount))
	})
	sc.Step(`^order "([^"]*)" is cancelled with filled (\d+) and fee charged (\d+)$`, func(ref string, filled, fee int64) error {
		return mc.OrderIsCancelledWithFilledAndFeeCharged(ref, uint64(filled), uint64(fee))
	})
	sc.Step(`^the best ask remaining amount is (\d+)$`, func(amount int64) error {
		return mc.BestAskRemainingAmountIs(uint64(amount))
	})
	sc.Step(`^there is no best bid$`, func() error {
		return mc.ThereIsNoBestBid()
	})
	sc.Step(`^the order book for "([^"]*)" is empty$`, func(pair string) error {
		return mc.OrderBookIsEmpty(pair)
	})
}
