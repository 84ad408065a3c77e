// Sqldal is a thin access layer between application code and a SQL engine,
// providing named, typed query parameters and result columns, first-class
// nested transactions, and engine-dependent query text selection.
//
// Queries are written with :name parameters and declared [Types] for their
// parameters and columns. [NewQuery] parses the text once, rewriting named
// parameters to the engine's positional placeholders while skipping string
// literals, quoted identifiers and comments. A [Builder] selects between SQL
// variants by database type and version, and [Concat] and [Format] compose
// query fragments.
//
// A [Database] owns a single live connection opened through a [Driver]
// (see the driver subpackages for sqlite and postgres). Statements are
// prepared from a Database or an open [Transaction]; writes require a
// transaction. Transactions nest through engine savepoints: committing a
// nested transaction is provisional until the root commits, and rolling one
// back leaves its parent open and usable.
//
// Query results are driven through a [Cursor] with named, typed column
// access via [Accessor] pairs registered per engine in a [Registry].
package sqldal
