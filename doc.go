// Package performance computes investment performance metrics from a
// chronological ledger of portfolio and account transactions: cost basis,
// realized and unrealized gains, currency effects, and money-weighted
// returns.
//
// The core functionalities include:
//   - Cost Basis Tracking: a per-security FIFO lot queue and moving-average
//     accumulator, replayed in strict time order. Transfers between
//     portfolios carry the original acquisition lots over, so cost basis
//     never resets on a move.
//   - Trade Collection: segmenting a security's holding history across all
//     portfolios into discrete trades and computing each trade's
//     money-weighted return (IRR).
//   - Client Attribution: decomposing the change of a client's total wealth
//     over a reporting interval into exactly reconciling categories — gains,
//     earnings, fees, taxes, transfers, and currency effects — each with an
//     explanation trail back to its source transactions.
//   - Security Performance Records: per-security interval aggregations
//     (shares, market value, costs, dividends, annualized return) available
//     both as an eager pass and as a lazily computed equivalent.
//
// The engine is a pure, synchronous computation over an immutable snapshot of
// ledger data. It consumes a CurrencyConverter and optional client filters as
// collaborators; it owns no persistence, no network surface, and no file
// format.
package performance
