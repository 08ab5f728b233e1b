// Package task runs queued jobs in-process. TaskRunner is a fixed pool of
// workers draining a buffered channel; LocalQueue builds on it to implement
// queue.Publisher for local development, delivering each job by HTTP POST
// with delays, retries and deduplication modelled on the hosted queue.
package task
