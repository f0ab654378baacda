// Package asset defines the records, write specifications and error taxonomy
// shared by the store, the batch file loader and the CLI.
//
// An Asset is one immutable version row of a logical asset. Rows sharing an
// AssetUID form its history; exactly one of them is current at a time.
// Producers never write rows directly. They describe the desired state with
// WriteSpec values and the store decides, per spec, whether that means a new
// asset, a new version or nothing at all.
//
// Validate checks a batch of WriteSpecs without touching storage and reports
// every problem it finds. The store runs it before opening a transaction.
package asset
