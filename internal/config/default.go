package config

// DefaultValues is the default configuration
const DefaultValues = `
network = ""
contract = ""
deploy-height = 0

indexer-url = ""
indexer-api-key = ""
http-proxy = ""
indexer-rps = 5.0
page-size = 500
max-retries = 5

burn-address = "0x000000000000000000000000000000000000dEaD"
scale-factor = 100
cooldown = "1m"
blocks-per-iteration = 1

dest-rpc-url = ""
dest-contract = ""
private-key = ""

metrics-addr = ""
`
