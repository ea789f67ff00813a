package config

const sixtySecondsBase = "https://60s.viki.moe/v2"

// DefaultSources 内置的数据源列表；配置文件中提供 sources 时整体替换
func DefaultSources() []Source {
	api := func(id, path, name, desc string) Source {
		return Source{
			ID:          id,
			URL:         sixtySecondsBase + path,
			Kind:        KindJSONAPI,
			Name:        name,
			Description: desc,
			Layout:      LayoutEnvelope,
			Headers:     map[string]string{"Accept": "application/json"},
		}
	}

	news60s := api("news60s", "/60s", "每天 60 秒读懂世界", "每日新闻摘要")
	news60s.ItemsPath = "news"
	news60s.DefaultLink = sixtySecondsBase + "/60s"

	return []Source{
		news60s,
		api("douyin", "/douyin", "抖音热榜", "抖音实时热点"),
		api("bili", "/bili", "哔哩哔哩热榜", "B 站热门搜索"),
		api("weibo", "/weibo", "微博热搜", "微博实时热搜榜"),
		api("rednote", "/rednote", "小红书热点", "小红书热门话题"),
		api("tieba", "/baidu/tieba", "百度贴吧", "贴吧热议话题"),
		api("toutiao", "/toutiao", "今日头条", "头条热榜"),
		api("zhihu", "/zhihu", "知乎热榜", "知乎热门问题"),
		api("hackernews", "/hacker-news/best", "Hacker News", "Best Stories"),
		api("hackernews_top", "/hacker-news/top", "Hacker News Top", "Top Stories"),
		api("hackernews_new", "/hacker-news/new", "Hacker News New", "New Stories"),
		{
			ID:          "arstechnica",
			URL:         "https://arstechnica.com/feed/",
			Kind:        KindRSS,
			Name:        "Ars Technica",
			Description: "科技新闻和评测",
		},
		{
			ID:          "wasi",
			URL:         "https://rss.aishort.top/?type=wasi",
			Kind:        KindRSS,
			Name:        "瓦斯阅读",
			Description: "微信热门文章聚合",
		},
		{
			ID:          "github",
			URL:         "https://github.com/trending",
			Kind:        KindHTML,
			Name:        "GitHub Trending",
			Description: "GitHub 今日热门仓库",
			Selectors: &Selectors{
				Item:        "article.Box-row",
				Title:       "h2 a",
				Description: "p",
				Extra: map[string]string{
					"stars": `a[href$="/stargazers"]`,
				},
			},
			Truncate: map[string]int{"description": 120},
		},
		{
			// 页面结构可能调整，选择器基于当前的 DOM 结构
			ID:          "baidu",
			URL:         "https://top.baidu.com/board?tab=realtime",
			Kind:        KindHTML,
			Name:        "百度热搜",
			Description: "百度实时热搜榜",
			Selectors: &Selectors{
				Item:        "div.category-wrap_iQLoo",
				Title:       "div.c-single-text-ellipsis",
				Link:        "a",
				Description: "div[class*='content']",
				Extra: map[string]string{
					"hot": "div.hot-index_1Bl1a",
				},
			},
			Truncate: map[string]int{"description": 120},
		},
	}
}
