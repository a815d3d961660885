/*
Package shuffleprover holds the errors shared by the packages of the
shuffle-proving worker.

The worker takes part in a mental poker protocol where a deck of ElGamal
masked cards is shuffled and re-masked by successive players. One run of
the worker fetches a task from the scheduler, proves the shuffle of the
deck it contains, commits to the cards that are not public yet and posts
the result back.

The packages are:

	deck       cards, decks and their flattening into field elements
	babyjub    the twisted Edwards curve over BN254 and ElGamal masking
	wire       the framing and token encoding of tasks and responses
	commit     the hash commitment over the private cards
	prover     the proof system, as an external program or for tests
	transport  fetching tasks and submitting results over HTTP
	worker     the pipeline running a single task, and its configuration
	generator  synthetic tasks and a mock scheduler

Errors returned by these packages can be matched against the sentinels
of this package with xerrors.Is.
*/
package shuffleprover
