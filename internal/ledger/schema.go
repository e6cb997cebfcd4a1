package ledger

const Schema = `
CREATE TABLE IF NOT EXISTS equity (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time DATETIME NOT NULL,
	total_equity REAL NOT NULL,
	pnl_usdt REAL NOT NULL,
	pnl_percent REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	ref TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	leg TEXT NOT NULL,
	side TEXT NOT NULL,
	filled REAL NOT NULL,
	avg_price REAL NOT NULL,
	time DATETIME NOT NULL,
	reason TEXT NOT NULL
);
`
