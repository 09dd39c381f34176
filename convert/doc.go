// Package convert answers free-form conversion questions found in chat text.
//
// A message such as "5k jpy into usd, gbp" is reduced to a ConversionRequest
// by Extract, then handed to an ordered chain of resolvers:
//   - CurrencyResolver converts between currency codes using the ECB reference
//     table held by RateCache, pivoting through EUR when neither side is EUR.
//   - OracleResolver delegates everything else (miles, ounces, kelvin, ...) to
//     an external conversion service and relays its answer verbatim.
//
// Messages that do not look like a conversion, or that nothing can resolve,
// produce a silent Reply. The package never surfaces errors to chat.
package convert
