package manager

// installTokens walks the network's non-primary currencies; for every
// currency with an issuer address (interpreted as the ERC-20 contract), it
// registers the token with the Ethereum sub-manager. No wallet is created
// until the user requests one via RegisterWallet — this only makes the
// token known to the sub-manager so it can track balances/transfers once a
// wallet does exist.
func (m *Manager) installTokens() {
	installer, ok := m.sub.(TokenInstaller)
	if !ok {
		return
	}
	for _, token := range m.Network.TokenCurrencies() {
		_ = installer.InstallToken(token.Issuer, token.Code, token.UID)
	}
}

// TokenInstaller is implemented by the Ethereum sub-manager to accept
// ERC-20 token registrations discovered from the network's currency list.
type TokenInstaller interface {
	InstallToken(contractAddress, symbol, uid string) error
}
