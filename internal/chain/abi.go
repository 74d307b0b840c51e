package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI fragments for the deployed contracts, reduced to the functions the
// gateway actually calls.
const coinABIJSON = `[
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isStudent","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"burnFrom","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"addStudent","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]},
  {"type":"function","name":"removeStudent","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"}],"outputs":[]}
]`

const registryABIJSON = `[
  {"type":"function","name":"createActivity","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"description","type":"string"},{"name":"rewardAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"completeActivity","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"activityId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"batchCompleteActivity","stateMutability":"nonpayable","inputs":[{"name":"accounts","type":"address[]"},{"name":"activityId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"hasCompleted","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"activityId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	abiOnce     sync.Once
	coinABI     abi.ABI
	registryABI abi.ABI
	abiErr      error
)

// loadABIs parses the embedded fragments once per process.
func loadABIs() (abi.ABI, abi.ABI, error) {
	abiOnce.Do(func() {
		coinABI, abiErr = abi.JSON(strings.NewReader(coinABIJSON))
		if abiErr != nil {
			return
		}
		registryABI, abiErr = abi.JSON(strings.NewReader(registryABIJSON))
	})
	return coinABI, registryABI, abiErr
}
